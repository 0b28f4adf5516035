package main

import (
	"log"
)

func main() {
	log.Println("[Main] 阅后即焚服务启动中...")

	runner := NewApplicationRunner()
	runner.Run()

	log.Println("[Main] 阅后即焚服务已停止")
}
