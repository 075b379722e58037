package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/detector"
	"github.com/ayusman/palak/internal/plugin"
	"github.com/ayusman/palak/internal/store"
	"github.com/ayusman/palak/internal/trace"
)

// runPipeline is the capture loop. It alternates between two modes keyed on
// face presence:
//
//   - idle: IdleFPS, frames only go through the motion detector
//   - active: ActiveFPS, every frame is run through the face detector and
//     observed by the trackers
//
// Motion wakes the loop from idle. IdleTimeout without a face sends it back.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	active := false
	var lastFace time.Duration

	ticker := time.NewTicker(time.Second / IdleFPS)
	defer ticker.Stop()

	setMode := func(on bool) {
		active = on
		fps := IdleFPS
		if on {
			fps = ActiveFPS
		}
		a.camera.SetFPS(fps)
		ticker.Reset(time.Second / time.Duration(fps))

		a.stateMu.Lock()
		a.stats.Active = on
		a.stateMu.Unlock()
		a.log.Debug().Bool("active", on).Int("fps", fps).Msg("pipeline mode changed")
	}

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		frame, err := a.camera.ReadFrame()
		if errors.Is(err, io.EOF) {
			a.log.Info().Msg("video source exhausted")
			return
		}
		if err != nil {
			a.log.Debug().Err(err).Msg("error reading frame")
			continue
		}
		a.keepFrame(frame)
		at := frame.CapturedAt

		if !active {
			moved, change := a.motion.Detect(frame.Mat)
			frame.Close()
			if moved {
				a.log.Debug().Float64("change", change).Msg("motion detected")
				lastFace = at
				setMode(true)
			}
			continue
		}

		faces, err := a.Detector().Detect(frame.Mat)
		frame.Close()
		if err != nil {
			a.log.Warn().Err(err).Msg("face detection failed")
			continue
		}

		a.Process(faces, at)

		if len(faces) > 0 {
			lastFace = at
		} else if at-lastFace > IdleTimeout {
			a.motion.Reset()
			setMode(false)
		}
	}
}

// Process runs one frame's detected faces through the trackers and returns
// the per-eye state. Only the most confident face is used. A frame without
// a face clears both trackers and closes open blinks. Blink events are
// stored, bound actions fired and subscribers notified before it returns.
func (a *App) Process(faces []detector.FaceLandmarks, now time.Duration) blink.FrameState {
	face := detector.Primary(faces)
	if face == nil {
		return a.observe(0, 0, false, now)
	}
	return a.observe(face.LidDistance(blink.EyeLeft), face.LidDistance(blink.EyeRight), true, now)
}

// ProcessSample is Process for a recorded trace sample.
func (a *App) ProcessSample(s trace.Sample) blink.FrameState {
	return a.observe(s.Left, s.Right, !s.Missing, s.At)
}

func (a *App) observe(left, right float64, present bool, now time.Duration) blink.FrameState {
	var (
		fs     blink.FrameState
		rose   []blink.Eye
		closed []blink.Event
	)

	a.stateMu.Lock()
	a.lastAt = now
	a.stats.Frames++
	a.pendingFrames++

	if present {
		a.faceSeen = true
		a.stats.FaceFrames++
		fs = a.tracker.ObserveAt(left, right, now)
		rose, closed = a.recorder.Record(fs)
		a.countLocked(closed)
	} else {
		if a.faceSeen {
			a.stats.FaceResets++
			closed = a.resetLocked()
			a.log.Debug().Dur("at", now).Msg("face lost, trackers cleared")
		}
		fs = blink.FrameState{At: now}
	}

	var flush int64
	var sessionID string
	if a.session != nil {
		sessionID = a.session.ID
		if a.pendingFrames >= frameFlushInterval {
			flush = a.pendingFrames
			a.pendingFrames = 0
		}
	}
	subscribers := a.subscribers
	a.stateMu.Unlock()

	if flush > 0 && a.config.Store != nil {
		if err := a.config.Store.Sessions().AddFrames(sessionID, flush); err != nil {
			a.log.Error().Err(err).Str("session", sessionID).Msg("failed to store frame count")
		}
	}

	a.finish(closed)
	for _, t := range triggersFor(rose, fs) {
		a.fire(t, fs.At)
	}
	for _, fn := range subscribers {
		fn(fs)
	}

	return fs
}

// resetLocked clears both trackers and closes open blinks at the last
// observed frame. The caller holds stateMu.
func (a *App) resetLocked() []blink.Event {
	a.tracker.Reset()
	a.faceSeen = false
	closed := a.recorder.Flush(a.lastAt)
	a.countLocked(closed)
	return closed
}

func (a *App) countLocked(closed []blink.Event) {
	for _, ev := range closed {
		if ev.Eye == blink.EyeRight {
			a.stats.RightBlinks++
		} else {
			a.stats.LeftBlinks++
		}
	}
}

// finish stores closed events under the active session and hands them to
// the OnBlink handlers.
func (a *App) finish(closed []blink.Event) {
	if len(closed) == 0 {
		return
	}

	a.stateMu.Lock()
	var sessionID string
	if a.session != nil {
		sessionID = a.session.ID
	}
	handlers := a.blinkHandlers
	a.stateMu.Unlock()

	for _, ev := range closed {
		a.log.Info().
			Str("eye", string(ev.Eye)).
			Dur("start", ev.Start).
			Dur("duration", ev.Duration()).
			Int("detections", ev.Detections).
			Msg("blink")

		if a.config.Store != nil && sessionID != "" {
			if err := a.config.Store.Events().Create(store.NewBlinkEvent(sessionID, ev)); err != nil {
				a.log.Error().Err(err).Str("session", sessionID).Msg("failed to store blink event")
			}
		}

		for _, fn := range handlers {
			fn(ev)
		}
	}
}

// triggersFor maps the eyes whose blink signal rose on a frame to the
// triggers to fire. A rise while both eyes are blinking fires "both" once;
// otherwise each rising eye fires its own trigger.
func triggersFor(rose []blink.Eye, fs blink.FrameState) []plugin.Trigger {
	if len(rose) == 0 {
		return nil
	}
	if fs.Left.Blinking && fs.Right.Blinking {
		return []plugin.Trigger{plugin.TriggerBoth}
	}

	triggers := make([]plugin.Trigger, 0, len(rose))
	for _, eye := range rose {
		if eye == blink.EyeRight {
			triggers = append(triggers, plugin.TriggerRight)
		} else {
			triggers = append(triggers, plugin.TriggerLeft)
		}
	}
	return triggers
}

// fire runs every enabled action bound to trigger. Plugins run in the
// background so the frame loop never waits on them.
func (a *App) fire(trigger plugin.Trigger, at time.Duration) {
	a.log.Debug().Str("trigger", string(trigger)).Dur("at", at).Msg("blink trigger")

	if a.config.Store == nil {
		return
	}

	actions, err := a.config.Store.Actions().ListByTrigger(string(trigger))
	if err != nil {
		a.log.Error().Err(err).Str("trigger", string(trigger)).Msg("failed to load actions")
		return
	}

	for _, act := range actions {
		a.actions.Add(1)
		go func(act *store.Action) {
			defer a.actions.Done()

			resp, err := a.RunAction(context.Background(), act, trigger, at)
			switch {
			case errors.Is(err, plugin.ErrPluginNotFound):
				a.log.Warn().Err(err).Str("plugin", act.PluginName).Msg("action bound to unknown plugin")
			case errors.Is(err, ErrTriggerRejected):
				a.log.Warn().Str("plugin", act.PluginName).Str("trigger", string(trigger)).Msg("plugin does not accept trigger")
			case err != nil:
				a.log.Error().Err(err).Str("action", act.ID).Str("plugin", act.PluginName).Msg("plugin action failed")
			case !resp.Success:
				a.log.Warn().Str("action", act.ID).Str("plugin", act.PluginName).Str("error", resp.Error).Msg("plugin reported failure")
			default:
				a.log.Debug().Str("action", act.ID).Str("plugin", act.PluginName).Msg("plugin action done")
			}
		}(act)
	}
}

// ErrTriggerRejected is returned by RunAction when the bound plugin does not
// accept the trigger.
var ErrTriggerRejected = errors.New("plugin does not accept trigger")

// RunAction executes the plugin action bound by act as if trigger had fired
// at the given session time. It waits for the plugin to answer.
func (a *App) RunAction(ctx context.Context, act *store.Action, trigger plugin.Trigger, at time.Duration) (*plugin.Response, error) {
	plug, err := a.pluginMgr.Get(act.PluginName)
	if err != nil {
		return nil, err
	}
	if !plug.Accepts(trigger) {
		return nil, fmt.Errorf("%w: %s %s", ErrTriggerRejected, act.PluginName, trigger)
	}

	return a.pluginExec.Execute(ctx, plug, &plugin.Request{
		Action:  act.ActionName,
		Trigger: trigger,
		AtMS:    at.Milliseconds(),
		Config:  act.Config,
	})
}

// WaitActions blocks until every plugin action started so far has finished.
func (a *App) WaitActions() {
	a.actions.Wait()
}
