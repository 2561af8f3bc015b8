package main

import (
	"fmt"
	"os"

	"cbot/internal/config"
)

const usageText = `cbot is a terminal client for the counseling chatbot backend.

Usage:
  cbot <command> [flags]

Commands:
  chat       run the chat UI (persona picker, live session progress, prompt inspector)
  watch      follow the session progress of a conversation without a UI
  start      create a conversation and print its id
  send       send one message to a conversation
  history    list conversations, or print one transcript
  prompt     show the generation context of an assistant turn
  personas   list personas
  recents    list conversations started from this machine
  config     print configuration (effective or defaults)
  health     check the backend
  help       show help

Common flags:
  --base-url string    backend base URL (env CBOT_BASE_URL)
  --user-id string     user id sent with new conversations (env CBOT_USER_ID)
  --log-level string   debug|info|warn|error (env CBOT_LOG_LEVEL)

Examples:
  cbot chat
  cbot chat --resume conv-0003
  cbot start --persona type_a --message "안녕하세요"
  cbot watch conv-0003 --interval 1s
  cbot prompt conv-0003 5
`

func printUsage() {
	fmt.Fprint(os.Stderr, usageText)
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		return
	}
	switch args[0] {
	case "-h", "--help", "help":
		printUsage()
		return
	}

	wiring := defaultCommandWiring(os.Stdout, os.Stderr)
	exitOnErr("env", config.LoadDotEnv(), wiring.stderr)
	commands := buildCommands(wiring)

	runner, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	exitOnErr(args[0], runner.Run(args[1:]), wiring.stderr)
}
