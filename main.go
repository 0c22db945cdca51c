package main

import "picshare-backend/cmd"

func main() {
	cmd.Run()
}
