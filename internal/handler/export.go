package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/shimesaba-type0/openlockey/internal/models"
	"github.com/shimesaba-type0/openlockey/internal/util"
)

// ExportHandler 负责登录历史导出（管理员）
type ExportHandler struct {
	DB *gorm.DB
}

func NewExportHandler(db *gorm.DB) *ExportHandler {
	return &ExportHandler{DB: db}
}

func (h *ExportHandler) loadHistory(c *gin.Context) ([]models.LoginHistory, map[uint]string, bool) {
	var rows []models.LoginHistory
	if err := h.DB.WithContext(c.Request.Context()).
		Order("timestamp DESC").Find(&rows).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询登录历史失败")
		return nil, nil, false
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		if r.UserID != nil {
			ids = append(ids, *r.UserID)
		}
	}
	names := map[uint]string{}
	if len(ids) > 0 {
		var users []models.User
		if err := h.DB.WithContext(c.Request.Context()).Where("id IN ?", ids).Find(&users).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "查询用户失败")
			return nil, nil, false
		}
		for _, u := range users {
			names[u.ID] = u.Username
		}
	}
	return rows, names, true
}

func historyRow(r *models.LoginHistory, names map[uint]string) []string {
	username := "未知用户"
	if r.UserID != nil {
		if name, ok := names[*r.UserID]; ok {
			username = name
		}
	}
	resultText := "失败"
	if r.Success {
		resultText = "成功"
	}
	return []string{
		strconv.FormatUint(uint64(r.ID), 10),
		username,
		r.IPAddress,
		r.UserAgent,
		r.Timestamp.Format("2006-01-02 15:04:05"),
		resultText,
		r.FailureReason,
	}
}

var historyHeaders = []string{"ID", "用户名", "IP地址", "User-Agent", "时间", "结果", "失败原因"}

// ExportCSV 导出登录历史为 CSV
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	rows, names, ok := h.loadHistory(c)
	if !ok {
		return
	}

	// 设置响应头
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"login_history_%s.csv\"",
		time.Now().Format("20060102")))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	// UTF-8 BOM（让 Excel 正确识别中文）
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer.Write(historyHeaders)
	for i := range rows {
		writer.Write(historyRow(&rows[i], names))
	}
}

// ExportXLSX 导出登录历史为 XLSX
func (h *ExportHandler) ExportXLSX(c *gin.Context) {
	rows, names, ok := h.loadHistory(c)
	if !ok {
		return
	}

	f := excelize.NewFile()
	sheetName := "登录历史"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "创建工作表失败")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	// 表头
	for i, header := range historyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, header)
	}

	// 数据行
	for rowIdx := range rows {
		values := historyRow(&rows[rowIdx], names)
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"login_history_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "导出失败")
		return
	}
}
