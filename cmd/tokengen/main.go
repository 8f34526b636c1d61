// Command tokengen mints a bearer token for the context insight API.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"contextinsight/internal/config"
	"contextinsight/internal/pkg/jwtutil"
)

func main() {
	client := flag.String("client", "", "client name embedded in the token")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to auth.jwt_expire_minute")
	flag.Parse()

	if *client == "" {
		log.Fatal("-client is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	expiration := *ttl
	if expiration <= 0 {
		expiration = time.Duration(cfg.Auth.JWTExpireMinute) * time.Minute
	}

	token, err := jwtutil.GenerateToken(cfg.Auth.JWTSecret, expiration, *client)
	if err != nil {
		log.Fatalf("generate token failed: %v", err)
	}
	fmt.Println(token)
}
