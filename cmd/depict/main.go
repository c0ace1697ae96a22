// Command depict renders randomized preview images of CAD models.
package main

func main() {
	Execute()
}
