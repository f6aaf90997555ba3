package cmd

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/pixport/cli/config"
	"github.com/justapithecus/pixport/cli/render"
	"github.com/justapithecus/pixport/cli/tui"
	"github.com/justapithecus/pixport/cli/views"
	"github.com/justapithecus/pixport/protocol"
)

// SubscribeCommand returns the subscribe command.
func SubscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Print host events as they arrive",
		ArgsUsage: "<event> [event...]",
		Flags: append(HostFlags(),
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Stop after this many events (0 runs until interrupted)",
			},
			&cli.DurationFlag{
				Name:  "for",
				Usage: "Stop after this long (0 runs until interrupted)",
			},
			TUIFlag,
		),
		Action: subscribeAction,
	}
}

func subscribeAction(c *cli.Context) error {
	names := c.Args().Slice()
	if len(names) == 0 {
		return exit(invalid("at least one event name is required"))
	}
	limit := c.Int("count")

	return withSession(c, sessionLabels{}, func(ctx context.Context, _ *config.Config, s *session, r *render.Renderer) error {
		if d := c.Duration("for"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}

		events := make(chan *protocol.HostEvent, 64)
		listener := func(ev *protocol.HostEvent) {
			select {
			case events <- ev:
			default:
				s.logger.Warn("event dropped", map[string]any{"event": ev.Name})
			}
		}
		for _, name := range names {
			id, err := s.host.OnEvent(ctx, name, listener)
			if err != nil {
				return err
			}
			defer s.host.RemoveEventListener(id)
		}

		if c.Bool("tui") {
			return streamEvents(ctx, s, names, limit, events)
		}

		seen := 0
		for {
			select {
			case ev := <-events:
				if err := r.Render(eventRow(ev)); err != nil {
					return err
				}
				seen++
				if limit > 0 && seen >= limit {
					return nil
				}
			case <-s.host.Done():
				return s.host.Err()
			case <-ctx.Done():
				return nil
			}
		}
	})
}

func eventRow(ev *protocol.HostEvent) views.EventRow {
	return views.EventRow{Time: time.Now().UTC().Format(time.RFC3339Nano), Name: ev.Name, Value: ev.Value}
}

// streamEvents feeds events to the live view until it exits.
func streamEvents(ctx context.Context, s *session, names []string, limit int, events <-chan *protocol.HostEvent) error {
	stream := tui.NewEventStream(ctx, names, limit)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev := <-events:
				stream.Push(eventRow(ev))
			case <-s.host.Done():
				stream.Stop(s.host.Err())
				return
			case <-done:
				return
			}
		}
	}()
	err := stream.Run()
	close(done)
	return err
}
