// Package config 提供 dumpflow 的配置管理功能。
//
// 配置来源依次为默认值、YAML 文件和环境变量，
// 后者覆盖前者。Validate 在进程启动时检查取值范围。
package config
