package encoder

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/nareix/gastream/av"
	"github.com/nareix/gastream/pipeline"
	"github.com/nareix/gastream/vsource"
)

// Worker feeds one output stream from one pipeline. Frames taken while
// Active reports false are released without encoding.
type Worker struct {
	ID       string
	StreamID int
	Pipe     *vsource.Pipeline
	Encoder  Encoder
	Writer   av.PacketWriter
	Active   func() bool
	Logger   logrus.FieldLogger

	done chan struct{}
	err  error
}

// Start registers with the pipeline and drains it in a new goroutine.
func (w *Worker) Start(ctx context.Context) (err error) {
	var client *vsource.Client
	if client, err = w.Pipe.Register(w.ID); err != nil {
		return errors.Wrap(err, "encoder: worker")
	}
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		defer client.Close()
		w.err = w.loop(ctx, client)
	}()
	return
}

// Wait blocks until a started worker stops and returns its error. A
// closed pipeline or an ended ctx is a normal stop.
func (w *Worker) Wait() error {
	if w.done == nil {
		return nil
	}
	<-w.done
	return w.err
}

func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	return w.Wait()
}

func (w *Worker) loop(ctx context.Context, client *vsource.Client) (err error) {
	log := w.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithFields(logrus.Fields{
		"function": "Worker.Run",
		"stream":   w.StreamID,
		"pipe":     w.Pipe.Name(),
	})

	log.Debug("Encoder worker started")
	defer func() {
		log.WithField("error", err).Debug("Encoder worker stopped")
	}()

	for {
		var slot *vsource.Slot
		if slot, err = client.Next(ctx); err != nil {
			switch errors.Cause(err) {
			case pipeline.ErrClosed, context.Canceled, context.DeadlineExceeded:
				err = nil
			}
			return
		}

		if w.Active != nil && !w.Active() {
			w.Pipe.ReleaseSlot(slot)
			continue
		}

		pkt, encErr := w.Encoder.Encode(slot.Data)
		w.Pipe.ReleaseSlot(slot)
		if encErr != nil {
			err = errors.Wrapf(encErr, "encoder: stream %d", w.StreamID)
			return
		}
		pkt.StreamID = w.StreamID
		log.Debug(pkt.String())

		if err = w.Writer.WritePacket(pkt); err != nil {
			return
		}
	}
}
