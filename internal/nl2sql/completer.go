package nl2sql

import "context"

// SystemRole is sent as the system message of every exchange.
const SystemRole = "You are a database expert. You write correct SQL for the schema you are given and explain SQL statements in plain language."

type Prompt struct {
	System string
	User   string
}

type Completion struct {
	Text     string
	Provider string
	Model    string
}

// Completer sends one system+user exchange to a language model and returns the first
// candidate's raw text.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}
