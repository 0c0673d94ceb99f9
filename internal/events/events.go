package events

import "context"

// Publisher is implemented by downstream fan-out mechanisms.
type Publisher interface {
	PublishSweepStatus(ctx context.Context, payload SweepStatusEvent) error
	PublishEpisode(ctx context.Context, payload EpisodeEvent) error
}

// SweepStatusEvent is emitted whenever a sweep changes state.
type SweepStatusEvent struct {
	SweepID           string `json:"sweep_id"`
	State             string `json:"state"`
	TotalEpisodes     int    `json:"total_episodes"`
	CompletedEpisodes int    `json:"completed_episodes"`
	LastError         string `json:"last_error,omitempty"`
}

// EpisodeEvent reports one finished episode.
type EpisodeEvent struct {
	SweepID       string  `json:"sweep_id"`
	Sequence      int     `json:"sequence"`
	Total         int     `json:"total"`
	Episode       int     `json:"episode"`
	JumpThreshold float64 `json:"jump_threshold"`
	DuckThreshold float64 `json:"duck_threshold"`
	JumpDelta     float64 `json:"jump_delta"`
	FinalDistance float64 `json:"final_distance"`
	FinalSpeed    float64 `json:"final_speed"`
	StepCount     int     `json:"step_count"`
}

// NoopPublisher logs nothing; useful for tests.
type NoopPublisher struct{}

// PublishSweepStatus satisfies Publisher.
func (NoopPublisher) PublishSweepStatus(context.Context, SweepStatusEvent) error { return nil }

// PublishEpisode satisfies Publisher.
func (NoopPublisher) PublishEpisode(context.Context, EpisodeEvent) error { return nil }
