package main

import (
	"context"
	"flag"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"depthview-go/internal/config"
	"depthview-go/internal/display"
	"depthview-go/internal/palette"
	"depthview-go/internal/pipeline"
	"depthview-go/internal/processing"
	"depthview-go/internal/sensor"
	"depthview-go/internal/status"
	"depthview-go/internal/types"
)

func TestAvailabilityCombinesStreamAndAPI(t *testing.T) {
	tracker := status.NewTracker()
	tracker.Init(false)
	a := &availability{tracker: tracker, api: true}

	a.setStream(true)
	assert.Equal(t, status.TextRunning, tracker.Text())
	a.setAPI(false)
	assert.Equal(t, status.TextUnavailable, tracker.Text())
	a.setAPI(true)
	assert.Equal(t, status.TextRunning, tracker.Text())
	a.setStream(false)
	assert.Equal(t, status.TextUnavailable, tracker.Text())
}

func TestFlushFramesSendsNewFramesOnly(t *testing.T) {
	surface, err := display.NewSurface(2, 1, palette.Colors())
	require.NoError(t, err)

	_, ok := frameMessage(surface)
	assert.False(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ui := make(chan any, 4)
	var stats atomic.Pointer[processing.BandStats]
	go flushFrames(ctx, surface, 200, ui, &stats)

	require.NoError(t, surface.Publish([]byte{1, 6}, 2, 1))
	select {
	case msg := <-ui:
		frame := msg.(types.FrameMessage)
		assert.Equal(t, "frame", frame.Type)
		assert.Equal(t, []byte{1, 6}, frame.Pixels)
	case <-time.After(time.Second):
		t.Fatal("no frame flushed")
	}

	select {
	case msg := <-ui:
		t.Fatalf("unexpected repeat flush: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
	require.NotNil(t, stats.Load())
	assert.Equal(t, 1, stats.Load().Counts[1])
}

func TestFollowGeometryReconfigures(t *testing.T) {
	g := types.FrameGeometry{Width: 2, Height: 1, BytesPerSample: 2}
	surface, err := display.NewSurface(g.Width, g.Height, palette.Colors())
	require.NoError(t, err)
	controller, err := pipeline.NewController(g, surface, pipeline.Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan types.FrameGeometry, 1)
	ui := make(chan any, 4)
	go followGeometry(ctx, changes, controller, ui, hclog.NewNullLogger())

	changes <- types.FrameGeometry{Width: 2, Height: 2, BytesPerSample: 2}
	select {
	case msg := <-ui:
		cfg := msg.(types.ConfigMessage)
		assert.Equal(t, "config", cfg.Type)
		assert.Equal(t, 2, cfg.Height)
	case <-time.After(time.Second):
		t.Fatal("no config sent after geometry change")
	}
	w, h := surface.Size()
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)

	var feed sensor.Feed
	meta := types.FrameMeta{MaxReliable: 4500}
	raw := []byte{0x84, 0x03, 0x84, 0x03, 0x84, 0x03, 0x84, 0x03}
	assert.Equal(t, pipeline.OutcomePublished, controller.HandleFrame(feed.Push(meta, raw)))

	changes <- types.FrameGeometry{}
	select {
	case msg := <-ui:
		t.Fatalf("unexpected config after invalid geometry: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 2, controller.Geometry().Height)
}

func TestLoadConfigAppliesSetFlags(t *testing.T) {
	app := newApp()
	set := flag.NewFlagSet("depthview", flag.ContinueOnError)
	for _, f := range app.Flags {
		require.NoError(t, f.Apply(set))
	}
	require.NoError(t, set.Parse([]string{"--source", "simulator", "--width", "64", "--height", "48"}))
	c := cli.NewContext(app, set, nil)

	cfg, err := loadConfig(c)
	require.NoError(t, err)
	assert.Equal(t, config.SourceSimulator, cfg.Sensor.Source)
	assert.Equal(t, 64, cfg.Sensor.Width)
	assert.Equal(t, 48, cfg.Sensor.Height)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}
