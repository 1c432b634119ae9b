package entity

import "time"

// PollOption is one answer variant. Keys are short stable strings ("1", "2", ...)
// unique within the poll; the slice keeps the creation order.
type PollOption struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

type Poll struct {
	ID        int64
	Question  string
	Options   []PollOption
	IsActive  bool
	CreatedBy int64
	CreatedAt time.Time
}

func (p Poll) OptionLabel(key string) (string, bool) {
	for _, opt := range p.Options {
		if opt.Key == key {
			return opt.Label, true
		}
	}
	return "", false
}
