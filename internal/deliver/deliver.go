// Package deliver puts finished transcripts where the user can use them:
// the system clipboard, and optionally the history database.
package deliver

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/openwhisper/ow-engine/internal/dictation"
	"github.com/openwhisper/ow-engine/internal/history"
)

// Clipboard pipes text to an external clipboard command (pbcopy on
// macOS, xclip/wl-copy elsewhere) and records the delivery. Failures
// are logged, never propagated: a clipboard hiccup must not fail a run
// that already produced text.
type Clipboard struct {
	cmd     string
	args    []string
	db      *history.DB // nil disables persistence
	log     zerolog.Logger
	timeout time.Duration
}

// New builds a Clipboard sink. command is split on whitespace so
// values like "xclip -selection clipboard" work.
func New(command string, db *history.DB, log zerolog.Logger) *Clipboard {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		fields = []string{"pbcopy"}
	}
	return &Clipboard{
		cmd:     fields[0],
		args:    fields[1:],
		db:      db,
		log:     log,
		timeout: 5 * time.Second,
	}
}

var _ dictation.Sink = (*Clipboard)(nil)

func (c *Clipboard) Deliver(ctx context.Context, d dictation.Delivery) {
	if err := c.copy(ctx, d.Text); err != nil {
		c.log.Error().Err(err).Str("cmd", c.cmd).Msg("clipboard copy failed")
	}

	if c.db == nil {
		return
	}
	dbCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	id, err := c.db.Insert(dbCtx, &history.Entry{
		Text:         d.Text,
		Provider:     string(d.Provider),
		FallbackUsed: d.FallbackUsed,
		DurationMs:   int(d.DurationMs),
	})
	if err != nil {
		c.log.Error().Err(err).Msg("failed to record transcription history")
		return
	}
	c.log.Debug().Int64("id", id).Msg("transcription recorded")
}

func (c *Clipboard) copy(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.cmd, c.args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}
