// Alertmanager 웹훅 페이로드 및 개별 알림 구조체를 정의
// handler, service 레이어에서 공통으로 사용하기 때문에 model 레이어에 별도로 정의

package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// AlertWebhook - Alertmanager 웹훅 페이로드
// 여러 개의 알림이 그룹으로 묶여서 전송 가능
type AlertWebhook struct {
	Version  string `json:"version"`
	GroupKey string `json:"groupKey"`
	Status   string `json:"status"`
	Receiver string `json:"receiver"`

	// 그룹 내 모든 알림에 공통으로 존재하는 라벨/어노테이션
	CommonLabels      map[string]string `json:"commonLabels"`
	CommonAnnotations map[string]string `json:"commonAnnotations"`
	ExternalURL       string            `json:"externalURL"`

	// 개별 알림 리스트
	Alerts []Alert `json:"alerts"`
}

// Alert - 개별 알림
//
// Labels:
//   - alertname: 알림 이름 (예: "ContainerDown", "HostHighMemory")
//   - severity: 심각도 (critical, warning, info)
//   - instance: 문제 발생 대상 (예: "nginx", "pve1")
//   - issue_type: (선택) 소스가 직접 지정한 issue 유형
//
// Annotations:
//   - summary / description: 알림 내용
type Alert struct {
	Status      string            `json:"status"` // firing | resolved
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`

	StartsAt time.Time `json:"startsAt"`

	// resolved 상태일 때만 유효한 값, firing이면 "0001-01-01T00:00:00Z"
	EndsAt time.Time `json:"endsAt"`

	GeneratorURL string `json:"generatorURL"`

	// Fingerprint: 알림 고유 식별자 (소스가 생성, 비어 있으면 name+instance 해시로 대체)
	Fingerprint string `json:"fingerprint"`
}

// DedupKey - dedup에 사용할 fingerprint
//
// 소스가 fingerprint를 주지 않은 경우 alertname+instance 해시로 계산.
func (a Alert) DedupKey() string {
	if a.Fingerprint != "" {
		return a.Fingerprint
	}
	sum := sha256.Sum256([]byte(a.Labels["alertname"] + "|" + a.Labels["instance"]))
	return hex.EncodeToString(sum[:])
}
