package planner

import "musecanvas-backend/internal/model"

// ExpandScenesToClips 把分镜展开为受模型单段上限约束的片段序列。
// 超长分镜按 maxClip 切分；切分后总时长仍不足 requestedTotal 时，
// 重复最后一个片段（时长取 min(maxClip, 剩余)）直至补齐。
// 这是系统里唯一的补齐规则：保证 sum(时长) ≥ requestedTotal 且每段 ≤ maxClip。
func ExpandScenesToClips(scenes []model.Scene, requestedTotal, maxClip int) []model.Scene {
	if len(scenes) == 0 {
		return nil
	}
	if maxClip <= 0 {
		maxClip = requestedTotal
		if maxClip <= 0 {
			maxClip = scenes[0].DurationSeconds
		}
	}

	var clips []model.Scene
	for _, scene := range scenes {
		remaining := scene.DurationSeconds
		if remaining <= 0 {
			remaining = 1
		}
		for remaining > maxClip {
			clips = append(clips, model.Scene{Prompt: scene.Prompt, DurationSeconds: maxClip})
			remaining -= maxClip
		}
		clips = append(clips, model.Scene{Prompt: scene.Prompt, DurationSeconds: remaining})
	}

	total := 0
	for _, c := range clips {
		total += c.DurationSeconds
	}

	// 补齐：重复最后一个片段直到满足请求总时长
	for total < requestedTotal {
		last := clips[len(clips)-1]
		d := requestedTotal - total
		if d > maxClip {
			d = maxClip
		}
		clips = append(clips, model.Scene{Prompt: last.Prompt, DurationSeconds: d})
		total += d
	}

	// 展开后重排连续编号 1..N
	for i := range clips {
		clips[i].Index = i + 1
	}

	return clips
}
