// Package recorder cài đặt máy trạng thái ghi âm phần thi nói:
// idle → preparing → recording → recorded (reset quay về idle).
// Máy chạy trên một goroutine duy nhất, chuyển trạng thái theo tick một giây
// do caller điều khiển (UI timer hoặc time.Ticker).
package recorder

import (
	"errors"
)

type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateRecording State = "recording"
	StateRecorded  State = "recorded"
)

var (
	ErrNotIdle      = errors.New("chỉ bắt đầu được từ trạng thái idle")
	ErrNotRecording = errors.New("không ở trạng thái recording")
	ErrNotRecorded  = errors.New("chưa có bản ghi để thao tác")
)

// AudioStream là nguồn dữ liệu micro: mỗi lần Read trả một chunk audio.
type AudioStream interface {
	Read() ([]byte, error)
	Close() error
}

// Microphone mở stream ghi âm; Open trả lỗi khi người dùng/trình duyệt
// từ chối quyền truy cập micro.
type Microphone interface {
	Open() (AudioStream, error)
}

// Config cho một lượt ghi âm theo đề bài speaking
type Config struct {
	PreparationTime int // giây chuẩn bị, 0 = vào recording ngay
	SpeakingTime    int // giới hạn giây nói, tự dừng khi chạm ngưỡng
}

type Recorder struct {
	cfg   Config
	mic   Microphone
	state State

	prepRemaining int
	elapsed       int

	stream  AudioStream
	chunks  [][]byte
	blob    []byte
	lastErr error
}

func New(cfg Config, mic Microphone) *Recorder {
	return &Recorder{
		cfg:   cfg,
		mic:   mic,
		state: StateIdle,
	}
}

func (r *Recorder) State() State { return r.state }

// Elapsed trả số giây đã nói
func (r *Recorder) Elapsed() int { return r.elapsed }

// PrepRemaining trả số giây chuẩn bị còn lại
func (r *Recorder) PrepRemaining() int { return r.prepRemaining }

// Err trả lỗi gần nhất (ví dụ bị từ chối quyền micro). Lỗi có thể thử lại
// bằng cách gọi Start lần nữa.
func (r *Recorder) Err() error { return r.lastErr }

// Blob trả audio đã ghép sau khi dừng ghi
func (r *Recorder) Blob() []byte { return r.blob }

// Start bắt đầu một lượt ghi. Nếu có thời gian chuẩn bị thì vào preparing
// và đếm ngược; không có thì xin quyền micro và ghi luôn.
func (r *Recorder) Start() error {
	if r.state != StateIdle {
		return ErrNotIdle
	}
	r.lastErr = nil

	if r.cfg.PreparationTime > 0 {
		r.state = StatePreparing
		r.prepRemaining = r.cfg.PreparationTime
		return nil
	}

	return r.openMicrophone()
}

// Tick tiến máy một giây. Gọi từ timer của caller.
func (r *Recorder) Tick() {
	switch r.state {
	case StatePreparing:
		r.prepRemaining--
		if r.prepRemaining <= 0 {
			// Hết giờ chuẩn bị: xin quyền micro. Bị từ chối thì về idle,
			// người dùng có thể bấm bắt đầu lại.
			if err := r.openMicrophone(); err != nil {
				r.state = StateIdle
			}
		}
	case StateRecording:
		chunk, err := r.stream.Read()
		if err == nil && len(chunk) > 0 {
			r.chunks = append(r.chunks, chunk)
		}
		r.elapsed++
		if r.cfg.SpeakingTime > 0 && r.elapsed >= r.cfg.SpeakingTime {
			r.finishRecording()
		}
	}
}

// Stop dừng ghi thủ công trước khi hết giờ
func (r *Recorder) Stop() error {
	if r.state != StateRecording {
		return ErrNotRecording
	}
	r.finishRecording()
	return nil
}

// Reset huỷ bản ghi và quay về idle
func (r *Recorder) Reset() error {
	if r.state != StateRecorded {
		return ErrNotRecorded
	}
	r.state = StateIdle
	r.blob = nil
	r.chunks = nil
	r.elapsed = 0
	r.lastErr = nil
	return nil
}

// Submit nộp blob kèm thời gian nói cho bên chấm điểm
func (r *Recorder) Submit(fn func(blob []byte, elapsedSeconds int) error) error {
	if r.state != StateRecorded {
		return ErrNotRecorded
	}
	return fn(r.blob, r.elapsed)
}

func (r *Recorder) openMicrophone() error {
	stream, err := r.mic.Open()
	if err != nil {
		r.lastErr = err
		r.state = StateIdle
		return err
	}
	r.stream = stream
	r.chunks = nil
	r.elapsed = 0
	r.state = StateRecording
	return nil
}

// finishRecording ghép các chunk thành một blob duy nhất
func (r *Recorder) finishRecording() {
	var total int
	for _, c := range r.chunks {
		total += len(c)
	}
	blob := make([]byte, 0, total)
	for _, c := range r.chunks {
		blob = append(blob, c...)
	}
	r.blob = blob
	r.stream.Close()
	r.stream = nil
	r.state = StateRecorded
}
