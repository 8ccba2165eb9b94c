package recorder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStream struct {
	chunk  []byte
	reads  int
	closed bool
}

func (s *fakeStream) Read() ([]byte, error) {
	s.reads++
	return s.chunk, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeMic struct {
	stream  *fakeStream
	denyErr error
	opens   int
}

func (m *fakeMic) Open() (AudioStream, error) {
	m.opens++
	if m.denyErr != nil {
		return nil, m.denyErr
	}
	return m.stream, nil
}

func TestStartWithoutPrepGoesStraightToRecording(t *testing.T) {
	mic := &fakeMic{stream: &fakeStream{chunk: []byte("abc")}}
	r := New(Config{PreparationTime: 0, SpeakingTime: 60}, mic)

	assert.Equal(t, StateIdle, r.State())
	assert.NoError(t, r.Start())
	assert.Equal(t, StateRecording, r.State())
	assert.Equal(t, 1, mic.opens)
}

func TestPreparationCountdown(t *testing.T) {
	mic := &fakeMic{stream: &fakeStream{chunk: []byte("x")}}
	r := New(Config{PreparationTime: 5, SpeakingTime: 60}, mic)

	assert.NoError(t, r.Start())
	assert.Equal(t, StatePreparing, r.State())
	assert.Equal(t, 5, r.PrepRemaining())

	// 4 tick đầu vẫn đang chuẩn bị
	for i := 0; i < 4; i++ {
		r.Tick()
		assert.Equal(t, StatePreparing, r.State())
	}
	assert.Equal(t, 1, r.PrepRemaining())

	// Tick thứ 5 chuyển sang recording
	r.Tick()
	assert.Equal(t, StateRecording, r.State())
	assert.Equal(t, 1, mic.opens)
}

func TestAutoStopAtSpeakingLimit(t *testing.T) {
	stream := &fakeStream{chunk: []byte("chunk")}
	mic := &fakeMic{stream: stream}
	r := New(Config{PreparationTime: 0, SpeakingTime: 10}, mic)

	assert.NoError(t, r.Start())
	for i := 0; i < 10; i++ {
		r.Tick()
	}

	assert.Equal(t, StateRecorded, r.State())
	assert.Equal(t, 10, r.Elapsed())
	assert.True(t, stream.closed)
	// 10 chunk x 5 byte
	assert.Len(t, r.Blob(), 50)

	// Tick thêm không đổi gì nữa
	r.Tick()
	assert.Equal(t, StateRecorded, r.State())
	assert.Equal(t, 10, r.Elapsed())
}

func TestManualStop(t *testing.T) {
	mic := &fakeMic{stream: &fakeStream{chunk: []byte("ab")}}
	r := New(Config{PreparationTime: 0, SpeakingTime: 60}, mic)

	assert.NoError(t, r.Start())
	r.Tick()
	r.Tick()
	r.Tick()
	assert.NoError(t, r.Stop())

	assert.Equal(t, StateRecorded, r.State())
	assert.Equal(t, 3, r.Elapsed())
	assert.Len(t, r.Blob(), 6)
}

func TestMicrophoneDeniedStaysIdle(t *testing.T) {
	denied := errors.New("quyền micro bị từ chối")
	mic := &fakeMic{denyErr: denied}
	r := New(Config{PreparationTime: 0, SpeakingTime: 60}, mic)

	err := r.Start()
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, StateIdle, r.State())
	assert.ErrorIs(t, r.Err(), denied)
	assert.Nil(t, r.Blob())

	// Cho phép lại thì start được bình thường
	mic.denyErr = nil
	mic.stream = &fakeStream{chunk: []byte("ok")}
	assert.NoError(t, r.Start())
	assert.Equal(t, StateRecording, r.State())
	assert.NoError(t, r.Err())
}

func TestMicrophoneDeniedAfterPreparation(t *testing.T) {
	denied := errors.New("quyền micro bị từ chối")
	mic := &fakeMic{denyErr: denied}
	r := New(Config{PreparationTime: 2, SpeakingTime: 60}, mic)

	assert.NoError(t, r.Start())
	r.Tick()
	r.Tick()

	assert.Equal(t, StateIdle, r.State())
	assert.ErrorIs(t, r.Err(), denied)
}

func TestInvalidTransitions(t *testing.T) {
	mic := &fakeMic{stream: &fakeStream{chunk: []byte("a")}}
	r := New(Config{PreparationTime: 0, SpeakingTime: 60}, mic)

	assert.ErrorIs(t, r.Stop(), ErrNotRecording)
	assert.ErrorIs(t, r.Reset(), ErrNotRecorded)

	assert.NoError(t, r.Start())
	assert.ErrorIs(t, r.Start(), ErrNotIdle)
	assert.ErrorIs(t, r.Submit(func([]byte, int) error { return nil }), ErrNotRecorded)
}

func TestResetAndSubmit(t *testing.T) {
	mic := &fakeMic{stream: &fakeStream{chunk: []byte("hi")}}
	r := New(Config{PreparationTime: 0, SpeakingTime: 60}, mic)

	assert.NoError(t, r.Start())
	r.Tick()
	assert.NoError(t, r.Stop())

	var gotBlob []byte
	var gotElapsed int
	err := r.Submit(func(blob []byte, elapsed int) error {
		gotBlob = blob
		gotElapsed = elapsed
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, []byte("hi"), gotBlob)
	assert.Equal(t, 1, gotElapsed)

	assert.NoError(t, r.Reset())
	assert.Equal(t, StateIdle, r.State())
	assert.Nil(t, r.Blob())
	assert.Equal(t, 0, r.Elapsed())
}
