package watch

import (
	"fmt"
	"time"
)

// waitForWaiters blocks until n observers are registered on s.
func waitForWaiters(s *State, n int) {
	for s.Waiting() < n {
		time.Sleep(time.Millisecond)
	}
}

func ExampleObserver_Wait() {
	state := NewState()
	observer := NewObserver(state, 1)

	state.SetVersion(2)
	fmt.Println(observer.Wait())

	state.SetVersion(0)
	fmt.Println(observer.Wait())
	fmt.Println(observer.Wait())

	// Output:
	// 2 true
	// 0 false
	// 0 false
}

func ExampleState_SetVersion() {
	state := NewState()
	observer := state.Subscribe()

	state.SetVersion(2)
	state.SetVersion(3)
	fmt.Println(observer.Wait())

	// Output:
	// 3 true
}

func ExampleObserver_Versions() {
	state := NewState()
	observer := state.Subscribe()

	go func() {
		for _, v := range []uint64{2, 3, 4} {
			waitForWaiters(state, 1)
			state.SetVersion(v)
		}

		waitForWaiters(state, 1)
		state.Close()
	}()

	for v := range observer.Versions() {
		fmt.Println("version", v)
	}
	fmt.Println("closed")

	// Output:
	// version 2
	// version 3
	// version 4
	// closed
}
