package app

import "github.com/charmbracelet/lipgloss"

const (
	chatBubblePaddingVertical   = 0
	chatBubblePaddingHorizontal = 1
)

var (
	headerStyle           = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	helpStyle             = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activityStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Bold(true)
	selectedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("236"))
	dividerStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	userBubbleStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Background(lipgloss.Color("236")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	agentBubbleStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	agentSelectedStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("117")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	pendingBubbleStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("237")).Foreground(lipgloss.Color("244")).Faint(true).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	chatMetaStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	chatMetaSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("117")).Bold(true)
	panelStyle            = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("238")).PaddingLeft(1)
	stageActiveStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("63")).Bold(true)
	stageCompletedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	stagePendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	taskCurrentStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	taskHighlightStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
	taskStyle             = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	scoreGoodStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true)
	scoreWeakStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	inspectorFrameStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("69")).Padding(0, 1)
	inspectorLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Bold(true)
	toastInfoStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("29")).Bold(true)
	toastWarningStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("136")).Bold(true)
	toastErrorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Bold(true)
)
