// Command billingctl runs the billing jobs and previews contract schedules
// from the command line.
package main

func main() {
	Execute()
}
