package main

import (
	"context"
	"flag"
	"time"

	"festival/internal/logger"
	"festival/internal/validation"
)

func main() {
	var baseURL string
	flag.StringVar(&baseURL, "url", "http://localhost:8080", "Base URL for API validation")
	flag.Parse()

	logger.Init("info", "text")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := validation.NewAPIValidator(baseURL).ValidateAll(ctx); err != nil {
		logger.Fatal("Validation failed", "error", err, "base_url", baseURL)
	}

	logger.Get().Info("Validation passed", "base_url", baseURL)
}
