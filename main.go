package main

import "github.com/shouni/go-news-harvest/cmd"

func main() {
	cmd.Execute()
}
