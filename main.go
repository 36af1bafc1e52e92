package main

import (
	"fmt"

	"github.com/phoenixd-dashboard/dashboard/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
