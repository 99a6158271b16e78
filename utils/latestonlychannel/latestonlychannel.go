/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package latestonlychannel

// Wrap returns a channel which yields the values sent on in, except that a
// value not yet received is replaced by any newer one.  Sends on in never
// wait for the reader.  The returned channel is closed once in is closed.
func Wrap[T any](in <-chan T) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)

		var (
			latest  T
			pending bool
		)
		for {
			// a nil channel disables the send case until there is a value
			var send chan<- T
			if pending {
				send = out
			}

			select {
			case v, ok := <-in:
				if !ok {
					return
				}
				latest, pending = v, true
			case send <- latest:
				pending = false
			}
		}
	}()

	return out
}
