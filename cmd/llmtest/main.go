package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"github.com/prepview/interview-ai-platform/internal/agent"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	messages := []agent.ChatMessage{
		{Role: agent.ChatRoleUser, Content: "Design a rate limiter for a public API."},
		{Role: agent.ChatRoleAssistant, Content: "Let's start with requirements. What request volume and burst behavior do you expect, and does the limit apply per user or globally?"},
		{Role: agent.ChatRoleUser, Content: "Per user, about 100 requests per second peak."},
	}

	systemPrompt := []string{
		"You are a system design interviewer. Ask one focused follow-up question.",
	}

	req := agent.LLMRequest{
		System:      systemPrompt,
		Messages:    messages,
		MaxTokens:   200,
		Temperature: 0.7,
	}

	fmt.Println("LLM Provider Test")

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey != "" {
		fmt.Println("\n[1] Testing Gemini...")
		geminiClient, err := agent.NewGeminiClient(ctx, geminiKey)
		if err != nil {
			fmt.Printf("    failed to create Gemini client: %v\n", err)
		} else {
			defer geminiClient.Close()
			geminiReq := req
			geminiReq.Model = "gemini-2.5-flash"
			runTest(ctx, geminiClient, geminiReq)
		}
	} else {
		fmt.Println("\n[1] Skipping Gemini test (GEMINI_API_KEY not set)")
	}

	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey != "" {
		fmt.Println("\n[2] Testing OpenAI...")
		client := agent.NewOpenAIClient(openai.NewClient(openaiKey))
		openaiReq := req
		openaiReq.Model = "gpt-4o-mini"
		runTest(ctx, client, openaiReq)
	} else {
		fmt.Println("\n[2] Skipping OpenAI test (OPENAI_API_KEY not set)")
	}

	fmt.Println("\nBedrock is exercised through the API server; it needs full AWS SDK config.")
}

func runTest(ctx context.Context, client agent.LLMClient, req agent.LLMRequest) {
	start := time.Now()
	resp, err := client.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("    error: %v\n", err)
		return
	}
	fmt.Printf("    response (%v):\n", elapsed.Round(time.Millisecond))
	fmt.Printf("    %s\n", resp.Text)
	fmt.Printf("    tokens: in=%d, out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
}
