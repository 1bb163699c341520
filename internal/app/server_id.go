package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateInstanceID 生成网关实例ID
// 优先使用环境变量 ESCTL_INSTANCE_ID，否则生成 esctl-{hostname}-{uuid前8位}
func GenerateInstanceID() string {
	if id := os.Getenv("ESCTL_INSTANCE_ID"); id != "" {
		return id
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("esctl-%s-%s", hostname, uuid.New().String()[:8])
}
