package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// IngestConfig carries the column alias tables and remediation hints used by
// the upload pipeline. It is loaded from ingest.yml and hot reloaded.
type IngestConfig struct {
	Aliases AliasConfig `mapstructure:"aliases"`
	Hints   []HintRule  `mapstructure:"hints"`
}

// AliasConfig maps a logical field to the ordered header names that may carry it.
type AliasConfig struct {
	Overview   map[string][]string `mapstructure:"overview"`
	PersonNode map[string][]string `mapstructure:"person_node"`
	CycleStats map[string][]string `mapstructure:"cycle_stats"`
	Ledger     map[string][]string `mapstructure:"ledger"`
}

// HintRule attaches a remediation message to a backend failure.
// A rule fires when the scope matches and either a substring or a
// SQLSTATE code matches the error.
type HintRule struct {
	Scopes   []string `mapstructure:"scopes"`
	Match    []string `mapstructure:"match"`
	Codes    []string `mapstructure:"codes"`
	Severity string   `mapstructure:"severity"`
	Message  string   `mapstructure:"message"`
}

const (
	FieldSerial            = "serial"
	FieldDepartment        = "department"
	FieldCustomer          = "customer"
	FieldInstallationStage = "installation_stage"
	FieldMaterial          = "material"
	FieldDrawing           = "drawing"
	FieldWarrantyCount     = "warranty_count"
	FieldWarrantyType      = "warranty_type"
	FieldFault             = "fault"
	FieldStart             = "start"
	FieldEnd               = "end"
	FieldNode              = "node"
	FieldPerson            = "person"
	FieldMaterialType      = "material_type"
	FieldHQDispatch        = "hq_dispatch"
	FieldHQAudit           = "hq_audit"
	FieldBranchSubmit      = "branch_submit"
	FieldSuppInvest        = "supp_invest"
	FieldBranchInvest      = "branch_invest"
	FieldTotalCycle        = "total_cycle"
	FieldQuantity          = "quantity"
	FieldAmount            = "amount"
	FieldResolution        = "resolution"
	FieldStatus            = "status"
	FieldCategory          = "category"
	FieldCause             = "cause"
	FieldApplyDate         = "apply_date"
)

func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		Aliases: AliasConfig{
			Overview: map[string][]string{
				FieldSerial:            {"serial_number", "三包流水号", "流水号"},
				FieldDepartment:        {"department", "分公司", "部门"},
				FieldCustomer:          {"customer_name", "客户名称", "项目名称", "项目"},
				FieldInstallationStage: {"installation_stage", "安装阶段"},
				FieldMaterial:          {"material_name", "物料名称", "物料描述"},
				FieldDrawing:           {"drawing_number", "图号"},
				FieldWarrantyCount:     {"warranty_count", "数量", "三包数量"},
				FieldWarrantyType:      {"warranty_type", "三包类型"},
				FieldFault:             {"fault_description", "故障描述", "问题描述", "原因"},
			},
			PersonNode: map[string][]string{
				FieldSerial: {"三包流水号", "serial_number", "流水号"},
				FieldStart:  {"处理开始时间", "start_time", "开始时间"},
				FieldEnd:    {"处理结束时间", "end_time", "结束时间"},
				FieldNode:   {"流程节点", "node", "节点"},
				FieldPerson: {"处理人姓名", "person_name", "处理人", "姓名"},
			},
			CycleStats: map[string][]string{
				FieldSerial:       {"三包流水号", "serial_number"},
				FieldMaterialType: {"基板类型", "material_type"},
				FieldHQDispatch:   {"总部制造发运时间"},
				FieldHQAudit:      {"总部审核处置时间"},
				FieldBranchSubmit: {"分公司审核提交时间"},
				FieldSuppInvest:   {"补充调查时间"},
				FieldBranchInvest: {"分公司现场调查时间"},
				FieldTotalCycle:   {"全周期统计时间"},
				FieldDepartment:   {"提出部门"},
				FieldCustomer:     {"客户名称"},
			},
			Ledger: map[string][]string{
				FieldSerial:       {"三包流水号", "serial_number", "流水号", "TR编号", "物流三包号", "快递三包号", "三包单取号"},
				FieldDepartment:   {"提出部门", "分公司", "部门", "责任科室"},
				FieldCustomer:     {"客户名称", "项目名称", "客户", "项目名"},
				FieldWarrantyType: {"三包类型", "类型", "TR部品分类", "品目分类", "部品分类"},
				FieldMaterial:     {"物料名称", "物料描述", "物料", "部品名称", "品目"},
				FieldQuantity:     {"数量", "三包数量", "统计-数量"},
				FieldAmount:       {"金额", "费用金额", "赔付金额", "金额(元)", "预估三包费用"},
				FieldResolution:   {"处理方式", "处置方式", "结案方式", "核查结案", "核查意见"},
				FieldStatus:       {"结案状态", "状态", "TR状态区分"},
				FieldCategory:     {"问题类别", "问题类型", "不良分类（MASTER）", "一级分类"},
				FieldCause:        {"原因", "原因分类", "原因类型", "五级定责分类"},
				FieldApplyDate:    {"申请日期", "发生日期", "上报日期", "TR提出日期", "记录更新日期"},
			},
		},
		Hints: []HintRule{
			{
				Match:    []string{"ON CONFLICT", "on conflict"},
				Codes:    []string{"42P10"},
				Severity: "error",
				Message:  "提示: 数据库约束不匹配。请执行 fix_schema_final.sql 以修复表结构。",
			},
			{
				Scopes:   []string{"ledger"},
				Match:    []string{"mese_ledger"},
				Codes:    []string{"42P01"},
				Severity: "warning",
				Message:  "提示: 如果出现 relation 不存在错误，请创建表 mese_ledger。",
			},
			{
				Scopes:   []string{"maintenance"},
				Match:    []string{"function truncate_table", "function cleanup_duplicates"},
				Codes:    []string{"42883"},
				Severity: "warning",
				Message:  "提示: 请先执行 rpc_cleanup_v4.sql",
			},
		},
	}
}

type IngestConfigHolder struct {
	current atomic.Value // holds IngestConfig
}

// NewStaticIngestConfigHolder wraps a fixed config, used by the CLIs and tests.
func NewStaticIngestConfigHolder(cfg IngestConfig) *IngestConfigHolder {
	holder := &IngestConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewIngestConfigHolder(log *zap.Logger) (*IngestConfigHolder, error) {
	log = log.Named("config.ingest")

	v := viper.New()
	v.SetConfigName("ingest")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/meseboard")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MESEBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultIngestConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("ingest.yml not found, using built-in alias tables")
		return NewStaticIngestConfigHolder(defaults), nil
	}

	cfg, err := decodeIngestConfig(v, defaults)
	if err != nil {
		return nil, err
	}

	holder := NewStaticIngestConfigHolder(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeIngestConfig(v, defaults)
		if err != nil {
			log.Warn("ingest config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("ingest config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *IngestConfigHolder) Get() IngestConfig {
	return h.current.Load().(IngestConfig)
}

// decodeIngestConfig overlays the file onto the defaults so a partial file
// only replaces the tables it names.
func decodeIngestConfig(v *viper.Viper, defaults IngestConfig) (IngestConfig, error) {
	var file IngestConfig
	if err := v.Unmarshal(&file); err != nil {
		return IngestConfig{}, err
	}

	cfg := defaults
	cfg.Aliases.Overview = mergeAliases(defaults.Aliases.Overview, file.Aliases.Overview)
	cfg.Aliases.PersonNode = mergeAliases(defaults.Aliases.PersonNode, file.Aliases.PersonNode)
	cfg.Aliases.CycleStats = mergeAliases(defaults.Aliases.CycleStats, file.Aliases.CycleStats)
	cfg.Aliases.Ledger = mergeAliases(defaults.Aliases.Ledger, file.Aliases.Ledger)
	if len(file.Hints) > 0 {
		cfg.Hints = file.Hints
	}

	if err := ValidateIngestConfig(cfg); err != nil {
		return IngestConfig{}, err
	}
	return cfg, nil
}

func mergeAliases(base, override map[string][]string) map[string][]string {
	out := make(map[string][]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v
		}
	}
	return out
}

func ValidateIngestConfig(cfg IngestConfig) error {
	tables := map[string]map[string][]string{
		"overview":    cfg.Aliases.Overview,
		"person_node": cfg.Aliases.PersonNode,
		"cycle_stats": cfg.Aliases.CycleStats,
		"ledger":      cfg.Aliases.Ledger,
	}
	for name, table := range tables {
		if len(table[FieldSerial]) == 0 {
			return fmt.Errorf("aliases.%s.serial cannot be empty", name)
		}
	}
	for i, hint := range cfg.Hints {
		if strings.TrimSpace(hint.Message) == "" {
			return fmt.Errorf("hints[%d].message cannot be empty", i)
		}
		if len(hint.Match) == 0 && len(hint.Codes) == 0 && len(hint.Scopes) == 0 {
			return errors.New("hint rule needs at least one of scopes, match or codes")
		}
		switch hint.Severity {
		case "info", "warning", "error", "success":
		default:
			return fmt.Errorf("hints[%d].severity %q is not supported", i, hint.Severity)
		}
	}
	return nil
}
