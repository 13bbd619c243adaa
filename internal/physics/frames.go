package physics

import (
	"fmt"

	"github.com/san-kum/mrsim/internal/dynamo"
)

const (
	FrameBody = "body"
	FrameTip  = "tip"
)

func unknownFrame(model, frame string) error {
	return fmt.Errorf("%w: %s has no frame %q", dynamo.ErrInvalidConfig, model, frame)
}

func unknownParam(name string) error {
	return fmt.Errorf("unknown param: %s", name)
}
