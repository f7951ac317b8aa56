// Command svcpool runs a service host and talks to it through a shared pool.
package main

func main() {
	Execute()
}
