package main

import (
	"context"
	"os"

	"github.com/querychat/querychat/internal/cli/querychatctl"
)

func main() {
	os.Exit(querychatctl.Run(context.Background(), os.Args[1:], querychatctl.Options{
		BaseURL: os.Getenv("QUERYCHAT_BASE_URL"),
		APIKey:  os.Getenv("QUERYCHAT_API_KEY"),
		UserID:  os.Getenv("QUERYCHAT_USER_ID"),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}))
}
