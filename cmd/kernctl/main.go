// Command kernctl boots a simulated kernel and inspects or exercises its
// memory allocators and synchronization primitives.
package main

func main() {
	execute()
}
