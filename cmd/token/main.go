package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mediagen/internal/middleware"
)

func main() {
	var (
		subjectFlag string
		localeFlag  string
		ttlFlag     time.Duration
	)
	flag.StringVar(&subjectFlag, "sub", "", "user id the token is issued to (required)")
	flag.StringVar(&localeFlag, "locale", "", "optional BCP 47 locale carried in the token")
	flag.DurationVar(&ttlFlag, "ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	token, err := issue(os.Getenv("JWT_SECRET"), subjectFlag, localeFlag, ttlFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}

func issue(secret, subject, locale string, ttl time.Duration) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errors.New("JWT_SECRET is required")
	}
	if ttl <= 0 {
		return "", errors.New("-ttl must be positive")
	}
	return middleware.SignJWT(secret, subject, strings.TrimSpace(locale), ttl)
}
