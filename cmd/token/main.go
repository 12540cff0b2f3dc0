package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/perse-cms/perse/internal/config"
	"github.com/perse-cms/perse/internal/pkg/jwt"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	subject := flag.String("subject", "admin", "Token subject")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	signer, err := jwt.NewSigner(cfg.JWTSecret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v: set jwt_secret or %s\n", err, config.EnvJWTSecret)
		os.Exit(1)
	}
	token, err := signer.Sign(*subject, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
