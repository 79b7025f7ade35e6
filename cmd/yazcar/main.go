// Command yazcar is the YazCar client and its local dev backend.
package main

import "github.com/yazcar/yazcarfax/cmd/yazcar/cmd"

func main() {
	cmd.Execute()
}
