package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/target/seclab-api/config"
	"github.com/target/seclab-api/internal/adapters/passwords"
	redisadapter "github.com/target/seclab-api/internal/adapters/redis"
	"github.com/target/seclab-api/internal/bootstrap"
	"github.com/target/seclab-api/internal/ports"
)

func runRevokeSessions(cmdCtx *commandContext, args []string) error {
	userID, err := parseUserID(args)
	if err != nil {
		return err
	}

	// Memory sessions live inside the server process.
	if cmdCtx.Config.SessionStore != config.SessionStoreRedis {
		return errors.New("revoke-sessions requires SESSION_STORE=redis")
	}

	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	store := redisadapter.NewSessionStoreWithPrefix(client, cmdCtx.Config.Redis.SessionPrefix)
	return revokeSessions(cmdCtx.Ctx, store, userID, cmdCtx.Out)
}

func parseUserID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: seclab-admin revoke-sessions <user-id>")
	}
	id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", args[0])
	}
	return id, nil
}

func revokeSessions(ctx context.Context, store ports.SessionStore, userID int64, out io.Writer) error {
	n, err := store.DeleteByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("revoke sessions for user %d: %w", userID, err)
	}
	return writef(out, "revoked %d session(s) for user %d\n", n, userID)
}

func runHashPassword(cmdCtx *commandContext, args []string) error {
	if len(args) != 0 {
		return errors.New("usage: seclab-admin hash-password < password")
	}
	hasher := passwords.NewBcryptHasher(cmdCtx.Config.Auth.BcryptCost)
	return hashPassword(cmdCtx.In, cmdCtx.Out, hasher)
}

func hashPassword(in io.Reader, out io.Writer, hasher ports.PasswordHasher) error {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("password must not be empty")
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return writeln(out, hash)
}
