// internal/stats/process.go
package stats

import (
	"os"
	"sync"

	"github.com/shirou/gopsutil/v4/process"
)

var (
	procOnce sync.Once
	proc     *process.Process
)

// sampleResources 는 현재 프로세스의 RSS / CPU 사용률을 읽는다.
// 플랫폼 미지원 등으로 실패하면 nil 을 반환하고 스냅샷에서 생략된다.
// 스냅샷 주기(수십 초)마다 한 번 불리므로 비용은 문제되지 않는다.
func sampleResources() *ResourceSample {
	procOnce.Do(func() {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err == nil {
			proc = p
		}
	})
	if proc == nil {
		return nil
	}

	mem, err := proc.MemoryInfo()
	if err != nil || mem == nil {
		return nil
	}
	// Percent(0) 은 직전 호출 이후 구간의 사용률을 돌려준다.
	cpu, err := proc.Percent(0)
	if err != nil {
		cpu = 0
	}

	return &ResourceSample{
		RSSBytes:   mem.RSS,
		CPUPercent: cpu,
	}
}
