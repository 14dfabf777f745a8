package domain

import "time"

// AskRequest is the inbound request shape for a pipeline run.
type AskRequest struct {
	Question     string   `json:"question"`
	Collections  []string `json:"collections,omitempty"`
	SubQuestions []string `json:"sub_questions,omitempty"`
	Limit        int      `json:"limit,omitempty"`
	Threshold    float64  `json:"threshold,omitempty"`
}

// QuestionJob is the asynchronous question envelope carried by the queue.
type QuestionJob struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	Collections []string  `json:"collections,omitempty"`
	Limit       int       `json:"limit,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// QuestionResult is published after the worker finishes a job.
type QuestionResult struct {
	ID          string           `json:"id"`
	Question    string           `json:"question"`
	Answer      string           `json:"answer,omitempty"`
	Error       string           `json:"error,omitempty"`
	ContextUsed []RetrievedChunk `json:"context_used,omitempty"`
	CompletedAt time.Time        `json:"completed_at"`
}
