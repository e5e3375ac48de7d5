// Command admin-token mints a staff JWT for the admin console or the
// game-server fulfillment plugin.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/craftmart/craftmart-backend/pkg/auth"
	"github.com/craftmart/craftmart-backend/pkg/config"
	"github.com/craftmart/craftmart-backend/pkg/enums"
	"github.com/craftmart/craftmart-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "admin-token"})
	_ = godotenv.Load()

	subject := flag.String("subject", "", "token subject, e.g. an operator email or plugin id")
	role := flag.String("role", string(enums.RoleAdmin), "admin|fulfillment")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	parsed, err := enums.ParseRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	token, err := auth.MintAccessToken(cfg.JWT, time.Now().UTC(), auth.AccessTokenPayload{
		Subject: *subject,
		Role:    parsed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
