package application

import (
	"context"
	"fmt"
	"log/slog"

	"meetmic/internal/domain"
)

// Publisher reports whether the session's stream has an audio track ready
// for the host to route into the call. It never modifies the session.
type Publisher struct {
	session *Session
	logger  *slog.Logger
}

func NewPublisher(session *Session, logger *slog.Logger) *Publisher {
	return &Publisher{
		session: session,
		logger:  logger,
	}
}

func (p *Publisher) PublishActiveMicrophone(ctx context.Context) (result domain.Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("publishing stream panicked", "panic", r)
			result = domain.Failure(domain.KindInternalError, fmt.Sprint(r))
		}
	}()

	stream, _, ok := p.session.Current()
	if !ok {
		return domain.Failure(domain.KindNoStreamAvailable, "Virtual mic stream not found")
	}

	tracks, err := stream.AudioTracks(ctx)
	if err != nil {
		return domain.Failure(domain.KindInternalError, err.Error())
	}
	if len(tracks) == 0 {
		return domain.Failure(domain.KindNoAudioTrack, "No audio track found")
	}

	track := tracks[0]
	p.logger.Info("virtual mic track available", "label", track.Label, "state", track.State)

	return domain.Success(track.Label, "Audio track injected - "+track.Label)
}
