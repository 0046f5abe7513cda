// Command tierctl inspects tierheap configurations and exercises the
// allocator with built-in scenarios and stress workloads.
package main

func main() {
	execute()
}
