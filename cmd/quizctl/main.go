package main

import (
	"log"

	"github.com/yourusername/quiz-api/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatalf("quizctl: %v", err)
	}
}
