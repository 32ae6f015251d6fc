/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/longkey1/chatline/cmd"

func main() {
	cmd.Execute()
}
