// Command palak detects eye blinks from a camera or a recorded trace and
// runs plugin actions bound to them.
package main

func main() {
	Execute()
}
