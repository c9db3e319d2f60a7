package worker

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/WesWeCan/mu-morphing-mirror/internal/pose"
	"github.com/WesWeCan/mu-morphing-mirror/internal/utils"
)

// Response status bytes written by the estimator ahead of each payload.
const (
	statusOK    byte = 0
	statusError byte = 1
)

// ErrEstimator marks a failure the estimator reported for a single frame.
// The process is still healthy and can take the next frame.
var ErrEstimator = errors.New("pose worker error")

// maxResponseSize guards against a corrupt length header allocating gigabytes.
const maxResponseSize = 64 * 1024 * 1024

// PoseWorker drives one pose-estimation subprocess.
//
// Protocol, both directions big-endian:
//
//	request:  [uint32 len][JPEG bytes]                   on the child's stdin
//	response: [uint32 len][status byte][payload]         on FD 3
//	          status 0: payload is the pose JSON array
//	          status 1: payload is [uint32 msgLen][message]
type PoseWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
}

// NewPoseWorker starts the estimator command. argv[0] is the executable.
func NewPoseWorker(ctx context.Context, id int, argv []string) (*PoseWorker, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("worker %d: empty estimator command", id)
	}
	cmd := utils.NewSafeCommand(ctx, argv[0], argv[1:]...)

	// Side-channel pipe (FD 3) keeps estimator prints on stdout out of the data stream
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	cmd.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Only the child may hold the write end, otherwise reads never see EOF
	w.Close()

	return &PoseWorker{
		ID:       id,
		Cmd:      cmd,
		Stdin:    stdin,
		DataPipe: r,
	}, nil
}

// Communicate sends one frame and returns the raw response body.
func (w *PoseWorker) Communicate(data []byte) ([]byte, error) {
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // estimator died, e.g. an import error at start-up
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes", respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame sends a JPEG frame and decodes the poses found in it.
func (w *PoseWorker) ProcessFrame(data []byte) ([]pose.Pose, error) {
	resp, err := w.Communicate(data)
	if err != nil {
		return nil, err
	}
	return decodeResponse(resp)
}

func decodeResponse(resp []byte) ([]pose.Pose, error) {
	if len(resp) == 0 {
		return nil, fmt.Errorf("empty response from pose worker")
	}

	switch resp[0] {
	case statusOK:
		var poses []pose.Pose
		if err := json.Unmarshal(resp[1:], &poses); err != nil {
			return nil, fmt.Errorf("malformed pose payload: %w", err)
		}
		return poses, nil
	case statusError:
		body := resp[1:]
		if len(body) < 4 {
			return nil, fmt.Errorf("truncated error response from pose worker")
		}
		msgLen := binary.BigEndian.Uint32(body[:4])
		if int(msgLen) > len(body)-4 {
			return nil, fmt.Errorf("truncated error response from pose worker")
		}
		return nil, fmt.Errorf("%w: %s", ErrEstimator, body[4:4+msgLen])
	default:
		return nil, fmt.Errorf("unknown pose worker status %d", resp[0])
	}
}

// Close shuts the estimator down and waits for it to exit.
func (w *PoseWorker) Close() {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd != nil {
		w.Cmd.Wait()
	}
}
