// Command tally runs the ledger service and its maintenance tasks.
package main

func main() {
	Execute()
}
