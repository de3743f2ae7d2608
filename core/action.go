package core

import "fmt"

// ActionKind identifies one variant of the closed orchestration action
// vocabulary.
type ActionKind string

// The complete action vocabulary. Adding a kind requires extending the
// Action sum type and every exhaustive switch over it.
const (
	ActionDelegate     ActionKind = "delegate_to_agent"
	ActionReadFile     ActionKind = "read_workspace_file"
	ActionWriteFile    ActionKind = "write_workspace_file"
	ActionInstallSkill ActionKind = "install_skill"
	ActionRespond      ActionKind = "respond_user"
	ActionFinish       ActionKind = "finish"
)

// SessionPolicy controls how a delegation resolves its target session.
type SessionPolicy string

const (
	// SessionAuto reuses the bound session unless the project context changed.
	SessionAuto SessionPolicy = "auto"
	// SessionNew forces rotation to a fresh session id.
	SessionNew SessionPolicy = "new"
	// SessionReuse forces reuse of the existing session id.
	SessionReuse SessionPolicy = "reuse"
)

// DelegationMode selects how delegated agents collaborate.
type DelegationMode string

const (
	// ModeDirect passes messages directly between agents.
	ModeDirect DelegationMode = "direct"
	// ModeArtifacts collaborates through shared workspace files.
	ModeArtifacts DelegationMode = "artifacts"
	// ModeHybrid mixes direct messaging with artifact exchange.
	ModeHybrid DelegationMode = "hybrid"
)

// Action is the sealed sum type over the orchestration action vocabulary.
// Concrete variants implement the unexported marker, keeping the set closed
// so consumption sites can switch exhaustively.
type Action interface {
	Kind() ActionKind
	isAction()
}

// DelegateAction hands the message to another agent for one provider
// invocation. TaskKey, when set, binds the exchange to a task thread so later
// steps can continue the same sub-conversation.
type DelegateAction struct {
	TargetAgentID string
	Message       string
	TaskKey       string
	SessionPolicy SessionPolicy
	Mode          DelegationMode
}

// Kind implements Action.
func (DelegateAction) Kind() ActionKind { return ActionDelegate }

func (DelegateAction) isAction() {}

// ReadFileAction reads a shared workspace file for artifact-mediated
// collaboration.
type ReadFileAction struct {
	Path string
}

// Kind implements Action.
func (ReadFileAction) Kind() ActionKind { return ActionReadFile }

func (ReadFileAction) isAction() {}

// WriteFileAction writes a shared workspace file.
type WriteFileAction struct {
	Path    string
	Content string
}

// Kind implements Action.
func (WriteFileAction) Kind() ActionKind { return ActionWriteFile }

func (WriteFileAction) isAction() {}

// InstallSkillAction installs a named capability through the external skill
// installation collaborator.
type InstallSkillAction struct {
	SkillName string
	Source    string
}

// Kind implements Action.
func (InstallSkillAction) Kind() ActionKind { return ActionInstallSkill }

func (InstallSkillAction) isAction() {}

// RespondAction delivers the final message to the user and terminates the run.
type RespondAction struct {
	Message string
}

// Kind implements Action.
func (RespondAction) Kind() ActionKind { return ActionRespond }

func (RespondAction) isAction() {}

// FinishAction terminates the run. Message may summarize the outcome.
type FinishAction struct {
	Message string
}

// Kind implements Action.
func (FinishAction) Kind() ActionKind { return ActionFinish }

func (FinishAction) isAction() {}

// ActionRecord is the flattened, JSON-persistable form of an Action as it
// appears in step logs. Only the fields relevant to the recorded kind are
// populated.
type ActionRecord struct {
	Kind          ActionKind     `json:"kind"`
	TargetAgentID string         `json:"target_agent_id,omitempty"`
	Message       string         `json:"message,omitempty"`
	TaskKey       string         `json:"task_key,omitempty"`
	SessionPolicy SessionPolicy  `json:"session_policy,omitempty"`
	Mode          DelegationMode `json:"mode,omitempty"`
	Path          string         `json:"path,omitempty"`
	Content       string         `json:"content,omitempty"`
	SkillName     string         `json:"skill_name,omitempty"`
	Source        string         `json:"source,omitempty"`
}

// RecordAction flattens an Action into its persistable record. The switch is
// exhaustive over the sealed variant set.
func RecordAction(a Action) ActionRecord {
	switch v := a.(type) {
	case DelegateAction:
		return ActionRecord{
			Kind:          ActionDelegate,
			TargetAgentID: v.TargetAgentID,
			Message:       v.Message,
			TaskKey:       v.TaskKey,
			SessionPolicy: v.SessionPolicy,
			Mode:          v.Mode,
		}
	case ReadFileAction:
		return ActionRecord{Kind: ActionReadFile, Path: v.Path}
	case WriteFileAction:
		return ActionRecord{Kind: ActionWriteFile, Path: v.Path, Content: v.Content}
	case InstallSkillAction:
		return ActionRecord{Kind: ActionInstallSkill, SkillName: v.SkillName, Source: v.Source}
	case RespondAction:
		return ActionRecord{Kind: ActionRespond, Message: v.Message}
	case FinishAction:
		return ActionRecord{Kind: ActionFinish, Message: v.Message}
	default:
		panic(fmt.Sprintf("core: unknown action type %T", a))
	}
}

// ActionFromRecord rebuilds the typed Action from its persisted record.
// Unknown kinds return an error so replay surfaces schema drift instead of
// silently dropping steps.
func ActionFromRecord(rec ActionRecord) (Action, error) {
	switch rec.Kind {
	case ActionDelegate:
		return DelegateAction{
			TargetAgentID: rec.TargetAgentID,
			Message:       rec.Message,
			TaskKey:       rec.TaskKey,
			SessionPolicy: rec.SessionPolicy,
			Mode:          rec.Mode,
		}, nil
	case ActionReadFile:
		return ReadFileAction{Path: rec.Path}, nil
	case ActionWriteFile:
		return WriteFileAction{Path: rec.Path, Content: rec.Content}, nil
	case ActionInstallSkill:
		return InstallSkillAction{SkillName: rec.SkillName, Source: rec.Source}, nil
	case ActionRespond:
		return RespondAction{Message: rec.Message}, nil
	case ActionFinish:
		return FinishAction{Message: rec.Message}, nil
	default:
		return nil, fmt.Errorf("core: unknown action kind %q", rec.Kind)
	}
}
