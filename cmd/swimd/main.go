// Command swimd runs a cluster-membership node: a UDP-speaking SWIM
// actor plus a small read-only HTTP debug surface.
package main

func main() {
	Execute()
}
