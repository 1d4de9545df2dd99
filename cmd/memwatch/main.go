// Command memwatch replays allocation traces through the memory watchdog
// and reports the allocations that were never freed.
package main

func main() {
	execute()
}
