// Package mocks provides gomock implementations of the repository and session ports.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	repo := mocks.NewMockOrderRepository(ctrl)
//	repo.EXPECT().GetByID(gomock.Any(), int64(1)).Return(order, nil)
package mocks

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/target/seclab-api/internal/core UserRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=order_repository_mock.go github.com/target/seclab-api/internal/core OrderRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=transaction_repository_mock.go github.com/target/seclab-api/internal/core TransactionRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=feedback_repository_mock.go github.com/target/seclab-api/internal/core FeedbackRepository
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=station_repository_mock.go github.com/target/seclab-api/internal/core StationRepository

// SessionStore lives in ports; the mock is used to force store failures.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=session_store_mock.go github.com/target/seclab-api/internal/ports SessionStore
