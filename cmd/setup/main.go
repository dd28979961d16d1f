// Command setup performs initial provisioning: it creates the database
// schema and an administrator account. Run it once before first start.
//
//	go run ./cmd/setup [--config config.yaml] [--reset]
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
	"gorm.io/gorm"

	"github.com/shimesaba-type0/openlockey/internal/config"
	"github.com/shimesaba-type0/openlockey/internal/database"
	"github.com/shimesaba-type0/openlockey/internal/models"
	"github.com/shimesaba-type0/openlockey/internal/util"
)

// 默认禁止的管理员用户名，可被 config/restricted_usernames.txt 覆盖
var defaultRestricted = []string{"admin", "administrator", "root", "superuser"}

func loadRestrictedUsernames() []string {
	data, err := os.ReadFile("config/restricted_usernames.txt")
	if err != nil {
		return defaultRestricted
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line != "" {
			names = append(names, line)
		}
	}
	if len(names) == 0 {
		return defaultRestricted
	}
	return names
}

func isRestricted(username string, restricted []string) bool {
	lower := strings.ToLower(username)
	for _, name := range restricted {
		if lower == name {
			return true
		}
	}
	return false
}

func promptUsername(reader *bufio.Reader, restricted []string) string {
	for {
		fmt.Print("管理员用户名: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintln(os.Stderr, "read input:", err)
			os.Exit(1)
		}
		username := strings.TrimSpace(line)
		if err := util.ValidateUsername(username); err != nil {
			fmt.Println("用户名必须为3-64位字母、数字或下划线")
			continue
		}
		if isRestricted(username, restricted) {
			fmt.Printf("出于安全考虑，'%s' 不能用作管理员用户名\n", username)
			continue
		}
		return username
	}
}

func promptPassword(reader *bufio.Reader, minLen int) string {
	fmt.Print("使用自动生成的密码短语? (y/n): ")
	line, err := reader.ReadString('\n')
	if err != nil {
		fmt.Fprintln(os.Stderr, "read input:", err)
		os.Exit(1)
	}
	if strings.ToLower(strings.TrimSpace(line)) == "y" {
		password, err := util.GeneratePassword(util.PasswordDefaultLength)
		if err != nil {
			fmt.Fprintln(os.Stderr, "generate password:", err)
			os.Exit(1)
		}
		fmt.Println("生成的密码短语:", password)
		fmt.Println("请将其保存在安全的地方，它不会再次显示。")
		return password
	}

	for {
		fmt.Printf("密码短语 (至少%d位): ", minLen)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			fmt.Fprintln(os.Stderr, "read password:", err)
			os.Exit(1)
		}
		password := string(raw)
		if len(password) < minLen {
			fmt.Printf("密码短语至少需要%d位\n", minLen)
			continue
		}

		fmt.Print("再次输入密码短语: ")
		rawConfirm, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			fmt.Fprintln(os.Stderr, "read password:", err)
			os.Exit(1)
		}
		if password != string(rawConfirm) {
			fmt.Println("两次输入不一致，请重试")
			continue
		}
		return password
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	reset := flag.Bool("reset", false, "重置数据库(删除所有数据)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init database:", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	if *reset {
		fmt.Print("警告: 将删除所有数据。继续? (yes/no): ")
		line, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(line)) != "yes" {
			fmt.Println("已取消")
			return
		}
		if err := database.Reset(db); err != nil {
			fmt.Fprintln(os.Stderr, "reset database:", err)
			os.Exit(1)
		}
		fmt.Println("数据库已重置")
	} else if err := database.AutoMigrate(db); err != nil {
		fmt.Fprintln(os.Stderr, "migrate database:", err)
		os.Exit(1)
	}

	restricted := loadRestrictedUsernames()
	username := promptUsername(reader, restricted)

	// 已存在则不重复创建
	var existing models.User
	err = db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		fmt.Printf("用户 '%s' 已存在\n", username)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		fmt.Fprintln(os.Stderr, "find user:", err)
		os.Exit(1)
	}

	password := promptPassword(reader, cfg.Auth.MinPasswordLength)

	hash, err := util.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hash password:", err)
		os.Exit(1)
	}

	admin := models.User{
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      true,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		fmt.Fprintln(os.Stderr, "create admin:", err)
		os.Exit(1)
	}

	fmt.Printf("管理员用户 '%s' 创建完成\n", username)
}
