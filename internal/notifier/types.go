package notifier

import "time"

// Config controls message delivery to the household chat.
type Config struct {
	Enabled       bool
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
	DedupWindow   time.Duration
	HistorySize   int
}

// Result is the structured outcome of a send. Callers never receive raw errors.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func ok() Result { return Result{Success: true} }

func failed(err error) Result {
	if err == nil {
		return Result{Success: false, Error: "unknown error"}
	}
	return Result{Success: false, Error: err.Error()}
}

type HistoryItem struct {
	At      time.Time `json:"at"`
	Text    string    `json:"text"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}
