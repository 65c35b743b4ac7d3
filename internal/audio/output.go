package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/book-expert/logger"
	"github.com/gen2brain/malgo"
	"github.com/gopxl/beep"
)

const (
	outputChannels = 2
	bytesPerSample = 2
	bytesPerFrame  = outputChannels * bytesPerSample
	defaultName    = "system default"
)

// ErrDeviceNotFound indicates that the requested output device does not exist.
var ErrDeviceNotFound = errors.New("desired audio device not found")

// Output binds playback to one output device, or to the system default when no
// device name is configured. It satisfies core.AudioOutput.
type Output struct {
	context  *malgo.AllocatedContext
	deviceID *malgo.DeviceID
	name     string
	volume   float64
	log      *logger.Logger
}

func initContext(log *logger.Logger) (*malgo.AllocatedContext, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		if log != nil {
			log.Info("audio backend: %s", message)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return ctx, nil
}

func freeContext(ctx *malgo.AllocatedContext) error {
	uninitErr := ctx.Uninit()
	ctx.Free()

	if uninitErr != nil {
		return fmt.Errorf("failed to release audio context: %w", uninitErr)
	}

	return nil
}

// ListOutputDevices returns the names of every playback device.
func ListOutputDevices() ([]string, error) {
	ctx, err := initContext(nil)
	if err != nil {
		return nil, err
	}

	defer func() { _ = freeContext(ctx) }()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate output devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for i := range infos {
		names = append(names, infos[i].Name())
	}

	return names, nil
}

// OpenOutput binds the output named deviceName, or the default device when
// deviceName is empty. A named device that does not exist is an error.
func OpenOutput(deviceName string, log *logger.Logger) (*Output, error) {
	ctx, err := initContext(log)
	if err != nil {
		return nil, err
	}

	output := &Output{
		context:  ctx,
		deviceID: nil,
		name:     defaultName,
		volume:   DefaultVolume,
		log:      log,
	}

	if deviceName != "" {
		findErr := output.bind(deviceName)
		if findErr != nil {
			_ = freeContext(ctx)

			return nil, findErr
		}
	}

	log.Info("Using [%s] as the audio device", output.name)

	return output, nil
}

func (o *Output) bind(deviceName string) error {
	infos, err := o.context.Devices(malgo.Playback)
	if err != nil {
		return fmt.Errorf("failed to enumerate output devices: %w", err)
	}

	for i := range infos {
		if infos[i].Name() == deviceName {
			id := infos[i].ID
			o.deviceID = &id
			o.name = deviceName

			return nil
		}
	}

	return fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceName)
}

// Name returns the bound device name.
func (o *Output) Name() string {
	return o.name
}

// SetVolume sets the linear gain applied to every clip played from now on.
func (o *Output) SetVolume(volume float64) error {
	err := ValidateVolume(volume)
	if err != nil {
		return err
	}

	o.volume = volume

	return nil
}

// Play opens a sink on the bound device and starts rendering streamer.
// Rendering continues on the device thread until the returned sink is closed.
func (o *Output) Play(streamer beep.Streamer, format beep.Format) (io.Closer, error) {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = outputChannels
	config.SampleRate = uint32(format.SampleRate)

	if o.deviceID != nil {
		config.Playback.DeviceID = o.deviceID.Pointer()
	}

	source := &sampleSource{streamer: applyVolume(streamer, o.volume), buffer: nil, done: false}

	device, err := malgo.InitDevice(o.context.Context, config, malgo.DeviceCallbacks{
		Data: source.fill,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open playback sink on [%s]: %w", o.name, err)
	}

	startErr := device.Start()
	if startErr != nil {
		device.Uninit()

		return nil, fmt.Errorf("failed to start playback on [%s]: %w", o.name, startErr)
	}

	return &sink{device: device}, nil
}

// Close releases the audio context.
func (o *Output) Close() error {
	return freeContext(o.context)
}

type sink struct {
	device *malgo.Device
	once   sync.Once
	err    error
}

func (s *sink) Close() error {
	s.once.Do(func() {
		stopErr := s.device.Stop()
		s.device.Uninit()

		if stopErr != nil {
			s.err = fmt.Errorf("failed to stop playback: %w", stopErr)
		}
	})

	return s.err
}

// sampleSource converts beep samples to interleaved signed 16-bit frames for
// the device callback.
type sampleSource struct {
	mu       sync.Mutex
	streamer beep.Streamer
	buffer   [][2]float64
	done     bool
}

func (s *sampleSource) fill(output, _ []byte, frameCount uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := min(int(frameCount), len(output)/bytesPerFrame)
	if cap(s.buffer) < frames {
		s.buffer = make([][2]float64, frames)
	}

	samples := s.buffer[:frames]
	filled := 0

	for filled < frames && !s.done {
		n, ok := s.streamer.Stream(samples[filled:])
		filled += n

		if !ok {
			s.done = true
		}

		if n == 0 {
			break
		}
	}

	for i := range filled {
		for channel := range outputChannels {
			offset := i*bytesPerFrame + channel*bytesPerSample
			binary.LittleEndian.PutUint16(output[offset:], uint16(toInt16(samples[i][channel])))
		}
	}

	clear(output[filled*bytesPerFrame:])
}

func toInt16(sample float64) int16 {
	clamped := math.Max(-1, math.Min(1, sample))

	return int16(clamped * math.MaxInt16)
}
