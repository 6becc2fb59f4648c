// Package pedlog follows the Entropia Universe chat log and turns new lines
// into typed events.
//
// This package allows you to:
//   - Follow chat.log in real time and poll classified events
//   - Classify single lines or whole files with the built-in rules
//   - Replace the built-in rules with a YAML rule file
//
// # Basic Usage
//
// A [Reader] follows the log in a background goroutine and keeps classified
// events in a bounded buffer. The consumer polls it at its own pace:
//
//	r, err := pedlog.NewReader(pedlog.StaticLocation(`C:\Users\me\Documents\Entropia Universe\chat.log`))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := r.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Stop()
//
//	for range time.Tick(100 * time.Millisecond) {
//	    for {
//	        ev, ok := r.NextEvent()
//	        if !ok {
//	            break
//	        }
//	        switch ev := ev.(type) {
//	        case *event.Combat:
//	            fmt.Println("hit", ev.Amount)
//	        case *event.Loot:
//	            fmt.Println("loot", ev.Item, ev.Value)
//	        }
//	    }
//	}
//
// Only lines written after Start are read unless [WithFromStart] is given.
// When more events arrive than the buffer holds, the oldest half is dropped;
// see [WithCapacity].
//
// # Lifecycle
//
// A Reader moves from [StateIdle] to [StateRunning] on Start and to
// [StateStopped] on Stop, when the log file goes away, or on a fatal read
// error ([Reader.Err]). A stopped Reader cannot be restarted.
//
// Lines that cannot be classified never stop a Reader. They are counted in
// [Reader.Stats] and logged through [WithLogger], with warnings limited to
// [WarnRateLimit] per second. Log records carry the reader's [Reader.ID].
//
// # Rule Files
//
// The built-in rules live in the [rules] subpackage. To use custom rules:
//
//	r, err := pedlog.NewReader(loc, pedlog.WithRulesFile("rules.yaml"))
//
// See the [rules] package for the YAML format.
//
// # Disclaimer
//
// This is an unofficial tool and is not affiliated with MindArk.
package pedlog
