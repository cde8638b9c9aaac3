// Package obs names the obs-websocket v5 requests and events livedeck uses
// and decodes their response bodies.
//
// Request parameters and responses are passed as opaque JSON everywhere
// else; only the handful of shapes the state cache and the console read
// are typed here.
package obs

// Request types.
const (
	GetVersion             = "GetVersion"
	GetStats               = "GetStats"
	GetCurrentProgramScene = "GetCurrentProgramScene"
	SetCurrentProgramScene = "SetCurrentProgramScene"
	GetSceneList           = "GetSceneList"
	GetSceneItemList       = "GetSceneItemList"
	GetSceneItemID         = "GetSceneItemId"
	SetSceneItemEnabled    = "SetSceneItemEnabled"
	GetStreamStatus        = "GetStreamStatus"
	StartStream            = "StartStream"
	StopStream             = "StopStream"
	ToggleStream           = "ToggleStream"
	GetRecordStatus        = "GetRecordStatus"
	StartRecord            = "StartRecord"
	StopRecord             = "StopRecord"
	ToggleRecord           = "ToggleRecord"
)

// Event types.
const (
	EventCurrentProgramSceneChanged  = "CurrentProgramSceneChanged"
	EventSceneListChanged            = "SceneListChanged"
	EventInputCreated                = "InputCreated"
	EventInputRemoved                = "InputRemoved"
	EventInputNameChanged            = "InputNameChanged"
	EventStreamStateChanged          = "StreamStateChanged"
	EventRecordStateChanged          = "RecordStateChanged"
	EventSceneItemEnableStateChanged = "SceneItemEnableStateChanged"
)

// VersionResponse is the body of GetVersion.
type VersionResponse struct {
	OBSVersion          string   `json:"obsVersion"`
	OBSWebSocketVersion string   `json:"obsWebSocketVersion"`
	RPCVersion          int      `json:"rpcVersion"`
	Platform            string   `json:"platform"`
	AvailableRequests   []string `json:"availableRequests"`
}

// CurrentSceneResponse is the body of GetCurrentProgramScene.
type CurrentSceneResponse struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
}

// Scene is one entry of GetSceneList.
type Scene struct {
	SceneName  string `json:"sceneName"`
	SceneIndex int    `json:"sceneIndex"`
}

// SceneListResponse is the body of GetSceneList. Scenes are listed from the
// highest index down, as the mixer returns them.
type SceneListResponse struct {
	CurrentProgramSceneName string  `json:"currentProgramSceneName"`
	CurrentPreviewSceneName string  `json:"currentPreviewSceneName"`
	Scenes                  []Scene `json:"scenes"`
}

// SceneItem is one source placed in a scene.
type SceneItem struct {
	SceneItemID      int    `json:"sceneItemId"`
	SourceName       string `json:"sourceName"`
	SceneItemEnabled bool   `json:"sceneItemEnabled"`
	InputKind        string `json:"inputKind"`
}

// SceneItemListResponse is the body of GetSceneItemList.
type SceneItemListResponse struct {
	SceneItems []SceneItem `json:"sceneItems"`
}

// SceneItemIDResponse is the body of GetSceneItemId.
type SceneItemIDResponse struct {
	SceneItemID int `json:"sceneItemId"`
}

// OutputStatusResponse is the body of GetStreamStatus and GetRecordStatus.
type OutputStatusResponse struct {
	OutputActive   bool   `json:"outputActive"`
	OutputPaused   bool   `json:"outputPaused"`
	OutputTimecode string `json:"outputTimecode"`
}

// ToggleResponse is the body of ToggleStream and ToggleRecord.
type ToggleResponse struct {
	OutputActive bool `json:"outputActive"`
}

// SceneChangedEvent is the data of CurrentProgramSceneChanged.
type SceneChangedEvent struct {
	SceneName string `json:"sceneName"`
}

// OutputStateChangedEvent is the data of StreamStateChanged and
// RecordStateChanged.
type OutputStateChangedEvent struct {
	OutputActive bool   `json:"outputActive"`
	OutputState  string `json:"outputState"`
}
