package main

import "sparkpark/backend/services/parking-service/internal/cli"

func main() {
	cli.Execute()
}
