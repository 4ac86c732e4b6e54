// Command ema-live runs a voice practice session against the speech service
// from the terminal.
//
//	ema-live [-env file]   start a session
//	ema-live schema        print the JSON schema of the wire records
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	session "github.com/koscakluka/ema-live/core"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/audio/miniaudio"
	"github.com/koscakluka/ema-live/core/audio/portaudio"
	"github.com/koscakluka/ema-live/internal/config"
	"github.com/koscakluka/ema-live/internal/logging"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) > 0 && args[0] == "schema" {
		return writeSchema(stdout)
	}

	flags := flag.NewFlagSet("ema-live", flag.ContinueOnError)
	envFile := flags.String("env", "", "load configuration from this .env file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}

	closeLogs, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLogs()

	audioOpts, closeAudio, err := openAudio(cfg)
	if err != nil {
		return err
	}
	defer closeAudio()

	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	opts := append(audioOpts,
		session.WithChunkSamples(cfg.ChunkSamples),
		session.WithConnectTimeout(cfg.ConnectTimeout),
		session.WithStateChangedCallback(func(from, to session.State) { send(stateMsg{from: from, to: to}) }),
		session.WithRecordCallback(func(record session.Record) { send(recordMsg{record: record}) }),
		session.WithErrorCallback(func(err error) { send(errMsg{err: err}) }),
		session.WithPartialTranscriptCallback(func(string) { send(partialMsg{}) }),
		session.WithPartialResponseCallback(func(string) { send(partialMsg{}) }),
	)
	sess := session.New(session.WebsocketDialer(cfg.Dialer()), cfg.Params(), opts...)
	slog.Info("starting session", "session_id", sess.ID(), "scenario_id", cfg.ScenarioID, "mode", cfg.Mode)

	program = tea.NewProgram(newModel(sess, cfg.Mode), tea.WithAltScreen())
	_, runErr := program.Run()
	return errors.Join(runErr, sess.Disconnect())
}

func setupLogging(cfg *config.Config) (func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}

	// The terminal belongs to the UI, so logs go to a file.
	var w io.Writer = io.Discard
	var file *os.File
	if cfg.LogFile != "" {
		file, err = os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = file
	}

	shutdown, err := logging.Setup(w, level)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, err
	}
	return func() {
		_ = shutdown(context.Background())
		if file != nil {
			_ = file.Close()
		}
	}, nil
}

func openAudio(cfg *config.Config) ([]session.SessionOption, func(), error) {
	switch cfg.AudioBackend {
	case config.BackendMiniaudio:
		client, err := miniaudio.NewClient()
		if err != nil {
			return nil, nil, err
		}
		logBackend(cfg.AudioBackend, client.CaptureSampleRate(), client.EncodingInfo())
		closeAudio := func() {
			if err := client.Close(); err != nil {
				slog.Warn("failed to close audio client", "error", err)
			}
		}
		return []session.SessionOption{session.WithAudioInput(client), session.WithAudioOutput(client)}, closeAudio, nil

	case config.BackendPortaudio:
		client, err := portaudio.NewClient(cfg.FramesPerBuffer)
		if err != nil {
			return nil, nil, err
		}
		logBackend(cfg.AudioBackend, client.CaptureSampleRate(), client.EncodingInfo())
		closeAudio := func() {
			if err := client.Close(); err != nil {
				slog.Warn("failed to close audio client", "error", err)
			}
		}
		return []session.SessionOption{session.WithAudioInput(client), session.WithAudioOutput(client)}, closeAudio, nil
	}

	slog.Info("running without audio devices")
	return nil, func() {}, nil
}

func logBackend(backend string, captureRate int, playback audio.EncodingInfo) {
	slog.Info("audio backend ready",
		"backend", backend,
		"capture_sample_rate", captureRate,
		"playback_sample_rate", playback.SampleRate,
		"playback_format", playback.Format.Name(),
	)
}
