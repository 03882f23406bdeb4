package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type textMsg string

func (m textMsg) NewMessage() Message { return textMsg("") }

func TestLoopMessageOrder(t *testing.T) {
	loop := NewLoop()
	var seen []textMsg
	budget := 1
	loop.AddController(PrLvNormal, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			msg := mc.CurrentMessage().(textMsg)
			if budget == 0 {
				mc.StopProcessing()
				return
			}
			budget--
			seen = append(seen, msg[:1])
			if len(msg) > 1 {
				mc.Replace(msg[1:])
				mc.StopProcessing()
				return
			}
			mc.MessageTaken()
		}))
		return nil
	}))

	loop.PostMessage(textMsg("ab"))
	loop.PostMessage(textMsg("c"))
	ctx := context.Background()
	loop.RunIteration(ctx)
	loop.PostMessage(textMsg("d"))
	for n := 0; n < 4; n++ {
		budget = 1
		loop.RunIteration(ctx)
	}
	require.Equal(t, []textMsg{"a", "b", "c", "d"}, seen)
}

func TestLoopPriorityOrder(t *testing.T) {
	loop := NewLoop()
	var order []int
	for _, lv := range []int{PrLvIdle, PrLvSense, PrLvActuate, PrLvTop} {
		lv := lv
		loop.AddController(lv, ControlFunc(func(cc ControlContext) error {
			require.Equal(t, lv, cc.PriorityLevel())
			order = append(order, lv)
			return errors.New("logged only")
		}))
	}
	loop.RunIteration(context.Background())
	require.Equal(t, []int{PrLvTop, PrLvSense, PrLvActuate, PrLvIdle}, order)
}

func TestLoopRunTriggerNext(t *testing.T) {
	loop := NewLoop()
	loop.Interval = time.Hour
	iterations := make(chan struct{}, 4)
	loop.AddController(PrLvNormal, ControlFunc(func(ControlContext) error {
		iterations <- struct{}{}
		return nil
	}))
	started := make(chan struct{})
	loop.AddRunnable(RunFunc(func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	<-started
	loop.TriggerNext()
	select {
	case <-iterations:
	case <-time.After(time.Second):
		t.Fatal("iteration not triggered")
	}
	cancel()
	require.True(t, errors.Is(<-done, context.Canceled))
}

func TestRunnerAggregatesErrors(t *testing.T) {
	errA := errors.New("a failed")
	runner := NewRunner().Go(
		NamedRun("a", RunFunc(func(context.Context) error { return errA })),
		RunFunc(func(context.Context) error { return context.Canceled }),
		RunFunc(func(context.Context) error { return nil }),
	)
	err := runner.Wait()
	require.Error(t, err)
	require.True(t, errors.Is(err, errA))
	require.Equal(t, "a: a failed", err.Error())

	require.NoError(t, NewRunner().Go(RunFunc(func(context.Context) error { return nil })).Wait())
}

func TestRunnerStopsOnFailure(t *testing.T) {
	errA := errors.New("transport lost")
	runner := NewRunner().Go(
		NamedRun("board", RunFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
		NamedRun("mqtt", RunFunc(func(context.Context) error { return errA })),
	)
	err := runner.Wait()
	require.True(t, errors.Is(err, errA))
	require.Equal(t, "mqtt: transport lost", err.Error())
}

func TestLoopStopsOnRunnableFailure(t *testing.T) {
	errA := errors.New("transport lost")
	loop := NewLoop()
	loop.Interval = time.Millisecond
	loop.AddRunnable(NamedRun("mqtt", RunFunc(func(context.Context) error { return errA })))
	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, errA))
	case <-time.After(time.Second):
		t.Fatal("loop kept running")
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	closed := 0
	closer := closerFunc(func() error {
		closed++
		close(stop)
		return nil
	})
	go cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-stop
		return nil
	})
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 1, closed)
}
